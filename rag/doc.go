// Copyright 2025-2026 ChatFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 提供对话引擎使用的检索适配层。

检索算法本身（向量检索、排序）被视为外部协作方，本包只暴露一个窄接口
Retriever，并提供一个基于内存向量存储的参考实现，便于本地运行与测试。

# 核心接口/类型

  - Retriever: 检索接口：Retrieve(ctx, query, topK) -> RetrievedContext
  - Node / RetrievedContext: 带来源 ID 与相关度分数的有序检索结果
  - VectorStore: 向量存储接口（AddDocuments / Search / DeleteDocuments / Count）
  - Embedder: 文本向量化接口
  - Postprocessor: 检索后处理（SimilarityCutoff / TopN）

# 主要能力

  - InMemoryVectorStore：余弦相似度 Top-K 检索
  - VectorRetriever：Embedder + VectorStore 组合成 Retriever
  - LoadDocumentsJSONL：加载已带向量的文档（不做切分与向量化）
*/
package rag
